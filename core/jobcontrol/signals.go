package jobcontrol

import (
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "jobcontrol")

// jobControlSignals are caught while the shell is interactive. Catching them
// rather than ignoring them means children start with default dispositions
// after exec.
var jobControlSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGQUIT,
	unix.SIGTSTP,
	unix.SIGTTIN,
	unix.SIGTTOU,
}

var shellSignals = make(chan os.Signal, 16)

// process holds the calls Initialize makes on the shell's own process.
type process struct {
	getpgrp      func() int
	getpid       func() int
	setpgid      func(pid, pgid int) error
	kill         func(pid int, sig unix.Signal) error
	catchSignals func()
}

var osProcess = process{
	getpgrp:      unix.Getpgrp,
	getpid:       unix.Getpid,
	setpgid:      unix.Setpgid,
	kill:         unix.Kill,
	catchSignals: catchSignals,
}

// Initialize readies an interactive shell for job control: it waits until the
// shell is in the foreground, catches the job control signals, puts the shell
// in its own process group and takes the terminal. It returns the shell's
// process group.
func Initialize(tty Terminal) (int, error) {
	return initialize(tty, osProcess)
}

func initialize(tty Terminal, proc process) (int, error) {
	for {
		fg, err := tty.Foreground()
		if err != nil {
			return 0, err
		}
		pgrp := proc.getpgrp()
		if fg == pgrp {
			break
		}
		log.WithFields(logrus.Fields{"pgrp": pgrp, "foreground": fg}).Debug("waiting to be put in the foreground")
		if err := proc.kill(-pgrp, unix.SIGTTIN); err != nil {
			return 0, errors.Wrap(err, "kill SIGTTIN")
		}
	}

	proc.catchSignals()

	pid := proc.getpid()
	if err := proc.setpgid(0, 0); err != nil && proc.getpgrp() != pid {
		// Session leaders can't change group but already lead one.
		return 0, errors.Wrap(err, "couldn't put the shell in its own process group")
	}

	pgid := proc.getpgrp()
	if err := tty.SetForeground(pgid); err != nil {
		return 0, err
	}

	log.WithField("pgid", pgid).Debug("job control initialized")
	return pgid, nil
}

func catchSignals() {
	signal.Notify(shellSignals, jobControlSignals...)

	go func() {
		for sig := range shellSignals {
			log.WithField("signal", sig).Debug("shell received signal")
		}
	}()
}
