package testutil

import (
	"context"
	"sync"
)

// FakeGateway records every device interaction and answers from a
// script. The zero value accepts every command with empty output.
type FakeGateway struct {
	mu sync.Mutex

	// Commands holds "<addr> <cmd>" in execution order, HTTPS CLI and
	// SSH alike.
	Commands []string

	// Outputs maps a command string to its canned output.
	Outputs map[string]string
	// OutputFunc, when set, computes output per call and wins over
	// Outputs.
	OutputFunc func(addr, cmd string) (string, error)
	// FailOn maps a command string to the error it should fail with.
	FailOn map[string]error

	// Files records PushFile payloads by "<addr>:<path>".
	Files map[string]string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Outputs: make(map[string]string),
		FailOn:  make(map[string]error),
		Files:   make(map[string]string),
	}
}

func (f *FakeGateway) record(addr, cmd string) {
	f.Commands = append(f.Commands, addr+" "+cmd)
}

func (f *FakeGateway) answer(addr, cmd string) (string, error) {
	f.record(addr, cmd)
	if err := f.FailOn[cmd]; err != nil {
		return "", err
	}
	if f.OutputFunc != nil {
		return f.OutputFunc(addr, cmd)
	}
	return f.Outputs[cmd], nil
}

func (f *FakeGateway) Execute(_ context.Context, addr, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answer(addr, cmd)
}

func (f *FakeGateway) Exec(_ context.Context, addr, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answer(addr, cmd)
}

func (f *FakeGateway) ExecPTY(_ context.Context, addr, cmd, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answer(addr, cmd)
}

func (f *FakeGateway) PushFile(_ context.Context, addr, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(addr, "pushfile "+path)
	if err := f.FailOn["pushfile "+path]; err != nil {
		return err
	}
	f.Files[addr+":"+path] = content
	return nil
}

// CommandsFor returns the commands issued to one device address.
func (f *FakeGateway) CommandsFor(addr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	prefix := addr + " "
	for _, c := range f.Commands {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}
