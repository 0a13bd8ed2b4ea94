package utils

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

func NewTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// ConsolePrompter asks the user to pick from numbered options on
// stdin. Satisfies libby.Prompter.
type ConsolePrompter struct {
	in *bufio.Reader
}

func NewConsolePrompter() ConsolePrompter {
	return ConsolePrompter{in: bufio.NewReader(os.Stdin)}
}

func (p ConsolePrompter) Choose(label string, options []string) (int, error) {
	fmt.Println(label)

	t := NewTable()
	t.AppendHeader(table.Row{"#", "option"})
	for i, opt := range options {
		t.AppendRow(table.Row{i + 1, opt})
	}
	t.Render()

	for {
		fmt.Print("Enter the number of your choice: ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			return 0, err
		}
		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || choice < 1 || choice > len(options) {
			fmt.Println("Invalid choice. Please enter a number from the list.")
			continue
		}
		return choice - 1, nil
	}
}

func (p ConsolePrompter) Input(label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Printf("%s (default: %s): ", label, fallback)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback, nil
	}
	return line, nil
}
