package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/joe-el-khoury/fbzmq/internal/logging"
	"github.com/joe-el-khoury/fbzmq/internal/monitor"
	"github.com/joe-el-khoury/fbzmq/internal/wire"
)

const usage = `usage: monitorctl [flags] <command> [args]

commands:
  set <name>=<value> ...    upsert counters
  get <name> ...            fetch counter values
  bump <name> ...           increment counters by one
  dump                      dump every counter with its value
  names                     list every counter name
  log <category> <sample>...broadcast one event log
  watch                     print publications until interrupted
  demo                      run the set/get example rounds
`

func main() {
	replyAddr := flag.String("addr", "tcp://127.0.0.1:5566", "monitor reply endpoint")
	pubAddr := flag.String("pub", "tcp://127.0.0.1:5567", "monitor publish endpoint")
	flag.Parse()

	logging.ConfigureRuntime()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	client := monitor.NewClient(*replyAddr, *pubAddr)
	if err := run(client, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "monitorctl: %v\n", err)
		os.Exit(1)
	}
}

func run(client *monitor.Client, cmd string, args []string) error {
	switch cmd {
	case "set":
		return runSet(client, args)
	case "get":
		if len(args) == 0 {
			return errors.New("get requires at least one counter name")
		}
		counters, err := client.GetCounters(args...)
		if err != nil {
			return err
		}
		printCounters(counters)
		return nil
	case "bump":
		if len(args) == 0 {
			return errors.New("bump requires at least one counter name")
		}
		return client.BumpCounters(args...)
	case "dump":
		counters, err := client.DumpCounters()
		if err != nil {
			return err
		}
		printCounters(counters)
		return nil
	case "names":
		names, err := client.CounterNames()
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	case "log":
		if len(args) < 2 {
			return errors.New("log requires a category and at least one sample")
		}
		return client.LogEvent(args[0], args[1:]...)
	case "watch":
		return runWatch(client)
	case "demo":
		return runDemo(client)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runSet(client *monitor.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("set requires at least one name=value pair")
	}
	counters := make(map[string]int64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid counter assignment %q", arg)
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid counter value %q: %w", raw, err)
		}
		counters[name] = value
	}
	return client.SetCounters(counters)
}

func runWatch(client *monitor.Client) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := client.Subscribe(ctx, func(pub wire.Publication) {
		switch pub.Type {
		case wire.CounterPubType:
			printCounterPub(pub.CounterPub)
		case wire.EventLogPubType:
			fmt.Printf("event %s: %s\n", pub.EventLog.Category, strings.Join(pub.EventLog.Samples, ", "))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runDemo mirrors the service's example exerciser: a few rounds of
// setting a random value and reading it back.
func runDemo(client *monitor.Client) error {
	const key = "test"
	for i := 0; i < 3; i++ {
		value := rand.Int63n(100)
		if err := client.SetCounters(map[string]int64{key: value}); err != nil {
			return fmt.Errorf("set (%s, %d): %w", key, value, err)
		}
		fmt.Printf("set (%s, %d) OK\n", key, value)

		counters, err := client.GetCounters(key)
		if err != nil {
			return fmt.Errorf("get (%s): %w", key, err)
		}
		fmt.Printf("get (%s) = %d OK\n", key, counters[key])
	}
	return nil
}

func printCounters(counters map[string]int64) {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %d\n", name, counters[name])
	}
}

func printCounterPub(pub *wire.CounterPub) {
	if pub == nil {
		return
	}
	names := make([]string, 0, len(pub.Counters))
	for name := range pub.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("counter %s: %d\n", name, pub.Counters[name].Value)
	}
}
