package interpreter

import (
	"strings"
	"testing"

	"github.com/former-xeneizes/csopesy-go/internal/process"
)

func lastLog(p *process.Process) string {
	if len(p.Logs) == 0 {
		return ""
	}
	return p.Logs[len(p.Logs)-1].Message
}

func TestPrintStripsQuotes(t *testing.T) {
	p := process.New("process01", 1)
	Execute(p, `PRINT "hello there"`)

	if got := lastLog(p); got != "PRINT: hello there" {
		t.Errorf("log = %q; want %q", got, "PRINT: hello there")
	}
}

func TestAddSaturatesAt65535(t *testing.T) {
	p := process.New("process01", 1)
	Execute(p, "ADD result 65000 1000")

	if got := p.Symbol("result"); got != 65535 {
		t.Errorf("result = %d; want 65535", got)
	}
}

func TestSubClampsAtZero(t *testing.T) {
	p := process.New("process01", 1)
	Execute(p, "SUB result 5 10")

	if got := p.Symbol("result"); got != 0 {
		t.Errorf("result = %d; want 0", got)
	}
}

func TestAddResolvesUnknownSymbolAsZero(t *testing.T) {
	p := process.New("process01", 1)
	Execute(p, "ADD total x y")

	if got := p.Symbol("total"); got != 0 {
		t.Errorf("total = %d; want 0", got)
	}
}

func TestSleepParseFailureDefaultsTo50ms(t *testing.T) {
	p := process.New("process01", 1)
	Execute(p, "SLEEP notanumber")

	if got := lastLog(p); got != "SLEEP end" {
		t.Errorf("log = %q; want SLEEP end", got)
	}
	// Confirm the start line recorded the 50ms fallback.
	found := false
	for _, l := range p.Logs {
		if strings.Contains(l.Message, "SLEEP start for 50 ms") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a SLEEP start log with the 50ms fallback")
	}
}

func TestUnknownOpcodeIsSkippedNotFatal(t *testing.T) {
	p := process.New("process01", 1)
	Execute(p, "DECLARE x 5")

	if got := lastLog(p); !strings.Contains(got, "skipped") {
		t.Errorf("log = %q; want a skipped message", got)
	}
}
