package main

import (
	"libbydl/cmd/libbydl/commands"
	"libbydl/lib/serviceutil"
	"libbydl/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	err := telemetry.SetupFromEnv(ctx, "libbydl")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer telemetry.Shutdown(ctx)
	commands.ExecuteContext(ctx)
}
