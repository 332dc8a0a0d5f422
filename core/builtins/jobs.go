package builtins

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/bsh/core/job"
	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

func init() {
	register(&Builtin{Name: "jobs", Main: Jobs, Help: `jobs: jobs [-lprs] [jobspec ...]
    Display status of jobs.

    Lists the active jobs. JOBSPEC restricts output to that job.
    Without options, the status of all active jobs is displayed.

    Options:
      -l	lists process IDs in addition to the normal information
      -p	lists process IDs only
      -r	restrict output to running jobs
      -s	restrict output to stopped jobs

    Exit Status:
    Returns success unless an invalid option is given or an error occurs.
`})

	register(&Builtin{Name: "fg", Main: Fg, Help: `fg: fg [jobspec]
    Move job to the foreground.

    Place the job identified by JOBSPEC in the foreground, making it
    the current job. If JOBSPEC is not present, the shell's notion of the
    current job is used.

    Exit Status:
    Status of command placed in foreground or failure if an error occurs.
`})

	register(&Builtin{Name: "bg", Main: Bg, Help: `bg: bg [jobspec ...]
    Move jobs to the background.

    Place the jobs identified by each JOBSPEC in the background, as if they
    had been started with '&'. If JOBSPEC is not present, the shell's notion
    of the current job is used.

    Exit Status:
    Returns success unless job control is not enabled or an error occurs.
`})

	register(&Builtin{Name: "kill", Main: Kill, Help: `kill: kill [-s sigspec | -sigspec] pid | %jobspec ...
    Send a signal to a job.

    Send SIGTERM, or the signal named by SIGSPEC, to the processes
    identified by PID. A %JOBSPEC terminates every process of that job
    and removes it from the job table.

    Exit Status:
    Returns success unless an invalid option is given or an error occurs.
`})
}

// Jobs lists the job table.
func Jobs(s Shell, io IO, args []string) int {
	opts := getopt.New()
	long := opts.Bool('l', "lists process IDs in addition to the normal information")
	pidsOnly := opts.Bool('p', "lists process IDs only")
	running := opts.Bool('r', "restrict output to running jobs")
	stopped := opts.Bool('s', "restrict output to stopped jobs")
	if err := opts.Getopt(args, nil); err != nil {
		return errorf(io, 2, "jobs: %v", err)
	}

	wanted := make(map[job.ID]bool)
	for _, spec := range opts.Args() {
		id, err := parseJobSpec(spec)
		if id == 0 && err == nil {
			id = s.Jobs().CurrentJob()
		}
		if _, ok := s.Jobs().Job(id); err != nil || !ok {
			return errorf(io, 1, "jobs: %s: no such job", spec)
		}
		wanted[id] = true
	}

	for _, j := range s.Jobs().Jobs() {
		switch {
		case len(wanted) > 0 && !wanted[j.ID]:
			continue
		case *running && j.Status() != job.Running:
			continue
		case *stopped && j.Status() != job.Stopped:
			continue
		}

		switch {
		case *long:
			for i, p := range j.Processes {
				prefix := "\t"
				if i == 0 {
					prefix = fmt.Sprintf("[%d] ", j.ID)
				}
				fmt.Fprintf(io.Stdout, "%s%s\t%s\t%s\n", prefix, displayPID(p.PID), p.Status, p.String())
			}
		case *pidsOnly:
			for _, p := range j.Processes {
				if p.PID != 0 {
					fmt.Fprintln(io.Stdout, p.PID)
				}
			}
		default:
			fmt.Fprintln(io.Stdout, &j)
		}
	}
	return 0
}

func displayPID(pid int) string {
	if pid == 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}

// Fg continues a job in the foreground and waits for it.
func Fg(s Shell, io IO, args []string) int {
	if len(args) > 2 {
		return errorf(io, 2, "fg: too many arguments")
	}

	var id job.ID
	if len(args) == 2 {
		var err error
		if id, err = parseJobSpec(args[1]); err != nil {
			return report(io, "fg", err)
		}
	}

	if id == 0 {
		id = s.Jobs().CurrentJob()
	}
	if j, ok := s.Jobs().Job(id); ok && s.Jobs().JobControl() {
		fmt.Fprintln(io.Stdout, j.Input)
	}

	code, err := s.Jobs().PutJobInForeground(id, true)
	if err != nil {
		return report(io, "fg", err)
	}
	return code
}

// Bg continues jobs in the background.
func Bg(s Shell, io IO, args []string) int {
	specs := args[1:]
	if len(specs) == 0 {
		specs = []string{"%%"}
	}

	status := 0
	for _, spec := range specs {
		id, err := parseJobSpec(spec)
		if err == nil {
			if id == 0 {
				id = s.Jobs().CurrentJob()
			}
			err = s.Jobs().PutJobInBackground(id, true)
		}
		if err != nil {
			status = report(io, "bg", err)
			continue
		}

		j, _ := s.Jobs().Job(id)
		fmt.Fprintf(io.Stdout, "[%d]+ %s &\n", j.ID, strings.TrimSuffix(strings.TrimSpace(j.Input), "&"))
	}
	return status
}

// Kill signals processes or terminates jobs.
func Kill(s Shell, io IO, args []string) int {
	sig := unix.SIGTERM

	// -SIGNAL isn't an option getopt understands.
	if len(args) > 1 && len(args[1]) > 1 && args[1][0] == '-' && args[1] != "-s" && args[1] != "--" {
		parsed, ok := parseSignal(args[1][1:])
		if !ok {
			return errorf(io, 1, "kill: %s: invalid signal specification", args[1][1:])
		}
		sig = parsed
		args = append([]string{args[0]}, args[2:]...)
	}

	opts := getopt.New()
	sigName := opts.String('s', "", "signal to send")
	if err := opts.Getopt(args, nil); err != nil {
		return errorf(io, 2, "kill: %v", err)
	}
	if *sigName != "" {
		parsed, ok := parseSignal(*sigName)
		if !ok {
			return errorf(io, 1, "kill: %s: invalid signal specification", *sigName)
		}
		sig = parsed
	}

	targets := opts.Args()
	if len(targets) == 0 {
		return errorf(io, 2, "kill: usage: %s", AllBuiltins["kill"].Usage())
	}

	status := 0
	for _, target := range targets {
		if strings.HasPrefix(target, "%") {
			status = max(status, killJob(s, io, target))
			continue
		}

		pid, err := strconv.Atoi(target)
		if err != nil {
			status = errorf(io, 1, "kill: %s: arguments must be process or job IDs", target)
			continue
		}
		if err := unix.Kill(pid, sig); err != nil {
			status = errorf(io, 1, "kill: (%d) - %v", pid, err)
		}
	}
	return status
}

func killJob(s Shell, io IO, spec string) int {
	id, err := parseJobSpec(spec)
	if err != nil {
		return errorf(io, 1, "kill: %s: arguments must be job IDs", spec)
	}
	if id == 0 {
		id = s.Jobs().CurrentJob()
	}

	killed, err := s.Jobs().KillJob(id)
	switch {
	case err != nil:
		return report(io, "kill", err)
	case killed == nil:
		return errorf(io, 1, "kill: %s: no such job", spec)
	}

	fmt.Fprintf(io.Stdout, "[%d]+\tTerminated: %d\t%s\n", killed.ID, int(unix.SIGTERM), killed.Input)
	return 0
}

func parseSignal(spec string) (unix.Signal, bool) {
	if n, err := strconv.Atoi(spec); err == nil {
		return unix.Signal(n), n >= 0
	}
	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := unix.SignalNum(name)
	return sig, sig != 0
}
