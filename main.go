package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"kosmokopy/cmd"
	"kosmokopy/internal/util"

	"golang.org/x/term"
)

func main() {
	// Capture original terminal state (if stdin is a TTY) so we can restore on forced exit.
	var origState *term.State
	if fi, _ := os.Stdin.Stat(); (fi.Mode() & os.ModeCharDevice) != 0 {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}

	forceExit := func(code int) {
		if origState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), origState)
		}
		os.Exit(code)
	}

	// Context used to issue graceful cancellation to the command tree.
	ctx, cancel := context.WithCancel(context.Background())

	// Setup signal handler for graceful + forced shutdown. Buffer 2 to catch quick double Ctrl+C.
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	done := make(chan struct{})
	var code int

	// Run the CLI in a goroutine so we can listen for signals concurrently.
	wg.Add(1)
	go func() {
		defer wg.Done()
		code = cmd.ExecuteContext(ctx)
		close(done)
	}()

	var first int32 // 0 = not received, 1 = received first Ctrl+C

waitLoop:
	for {
		select {
		case sig := <-sigs:
			if sig == os.Interrupt || sig == syscall.SIGTERM {
				if atomic.CompareAndSwapInt32(&first, 0, 1) {
					log.Println("interrupt received (Ctrl+C). Attempting graceful shutdown... (press Ctrl+C again to force)")
					cancel() // signal cancellation to the orchestrator via context
					select {
					case <-done:
						log.Println("transfer exited cleanly")
						break waitLoop
					case sig2 := <-sigs:
						log.Printf("second signal (%v) received -> force exit\n", sig2)
						forceExit(130) // 130 = terminated by Ctrl+C convention
					case <-time.After(5 * time.Second):
						log.Println("timeout waiting for transfer to wind down, forcing exit")
						forceExit(1)
					}
				} else {
					log.Println("second Ctrl+C -> immediate force exit")
					forceExit(130)
				}
			}
		case <-done:
			break waitLoop
		}
	}

	wg.Wait()

	if origState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), origState)
	}
	util.Default.ClearLine()
	os.Exit(code)
}
