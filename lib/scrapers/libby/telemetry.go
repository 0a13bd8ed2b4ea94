package libby

import (
	"libbydl/lib/restyutil"
	"libbydl/lib/telemetry"
)

var tracer = telemetry.Tracer("libbydl.lib.scrapers.libby")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
