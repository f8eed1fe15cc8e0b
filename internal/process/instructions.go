package process

import (
	"fmt"
	"math/rand"
)

// dummyOps is the restricted opcode set the batch generator draws
// from: PRINT, SLEEP, ADD, SUB, FOR. DECLARE/READ/WRITE are shell-only
// (internal/shellexec) and never appear in generated instruction
// streams.
var dummyOps = []string{"ADD", "SUB", "PRINT", "SLEEP", "FOR"}

// GenerateDummyInstructions fills p.Code with numInstructions randomly
// chosen instruction lines and sets TotalInstructions, mirroring the
// original emulator's generate_dummy_instructions but restricted to
// the scheduler's supported opcode subset.
func GenerateDummyInstructions(p *Process, numInstructions int) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	p.Code = p.Code[:0]
	for i := 0; i < numInstructions; i++ {
		switch dummyOps[rand.Intn(len(dummyOps))] {
		case "ADD":
			p.Code = append(p.Code, fmt.Sprintf("ADD x0 x1 %d", rand.Intn(10)))
		case "SUB":
			p.Code = append(p.Code, fmt.Sprintf("SUB x0 x1 %d", rand.Intn(10)))
		case "PRINT":
			p.Code = append(p.Code, fmt.Sprintf("PRINT \"Hello world from %s!\"", p.Name))
		case "SLEEP":
			p.Code = append(p.Code, fmt.Sprintf("SLEEP %d", rand.Intn(200)))
		case "FOR":
			p.Code = append(p.Code, fmt.Sprintf("FOR %d", 1+rand.Intn(5)))
		}
	}
	p.TotalInstructions = len(p.Code)
}
