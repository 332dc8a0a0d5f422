package jobcontrol

import (
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

type waitResult struct {
	pid int
	ws  unix.WaitStatus
}

type killCall struct {
	pid int
	sig unix.Signal
}

// fakeSys replays scripted wait results in order.
type fakeSys struct {
	results []waitResult
	waits   int
	kills   []killCall
}

func (f *fakeSys) Wait4(pid int, options int) (int, unix.WaitStatus, error) {
	f.waits++
	if len(f.results) == 0 {
		if options&unix.WNOHANG != 0 {
			return 0, 0, nil
		}
		return -1, 0, unix.ECHILD
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.pid, next.ws, nil
}

func (f *fakeSys) Kill(pid int, sig unix.Signal) error {
	f.kills = append(f.kills, killCall{pid, sig})
	return nil
}

type fakeTerminal struct {
	foreground int
	handoffs   []int
	restored   int
}

func (f *fakeTerminal) Foreground() (int, error) {
	return f.foreground, nil
}

func (f *fakeTerminal) SetForeground(pgid int) error {
	f.foreground = pgid
	f.handoffs = append(f.handoffs, pgid)
	return nil
}

func (f *fakeTerminal) Modes() (*term.State, error) {
	return &term.State{}, nil
}

func (f *fakeTerminal) SetModes(*term.State) error {
	f.restored++
	return nil
}

func exited(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

func signaled(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(sig)
}

func stopped(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(0x7f | int(sig)<<8)
}
