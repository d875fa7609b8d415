package cli

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// MainLoop runs exec for every line: interactive prompt on terminal, otherwise reads stdin to EOF.
// First SIGINT calls interrupt (if not nil) instead of exiting, any further signal exits.
func MainLoop(tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest, interrupt func()) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		pending := false
		for s := range signalCh {
			if s == syscall.SIGINT && interrupt != nil && !pending {
				log.Printf("%s: interrupt requested, press Ctrl+C again to exit", tag)
				pending = true
				interrupt()
				continue
			}
			os.Exit(1)
		}
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(exec, complete,
			prompt.OptionTitle(tag),
			prompt.OptionPrefix(tag+"> "),
		).Run()
	} else {
		RunLines(os.Stdin, exec)
	}
}

func RunLines(r io.Reader, exec func(line string)) {
	all, err := ioutil.ReadAll(r)
	if err != nil {
		log.Fatal(err)
	}
	for _, lineb := range bytes.Split(all, []byte{'\n'}) {
		line := string(bytes.TrimSpace(lineb))
		if line == "" {
			continue
		}
		exec(line)
	}
}
