// Package control implements the stdin command parser driving the
// server's control plane (spec §6's q/p+/p-/m+/m-/m/l+/l- command
// set), grounded on
// original_source/common/src/console/console_input_parser.hpp.
package control

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Command is one parsed control-plane action.
type Command uint8

const (
	CommandUnknown Command = iota
	CommandQuit
	CommandPriceFeedStart
	CommandPriceFeedStop
	CommandMonitorUp
	CommandMonitorDown
	CommandMonitorPrint
	CommandLogUp
	CommandLogDown
)

var commandMap = map[string]Command{
	"q":  CommandQuit,
	"p+": CommandPriceFeedStart,
	"p-": CommandPriceFeedStop,
	"m+": CommandMonitorUp,
	"m-": CommandMonitorDown,
	"m":  CommandMonitorPrint,
	"l+": CommandLogUp,
	"l-": CommandLogDown,
}

var commandDescriptions = []struct {
	cmd   Command
	input string
	descr string
}{
	{CommandQuit, "q", "quit"},
	{CommandPriceFeedStart, "p+", "start price feed"},
	{CommandPriceFeedStop, "p-", "stop price feed"},
	{CommandMonitorUp, "m+", "raise monitor rate"},
	{CommandMonitorDown, "m-", "lower monitor rate"},
	{CommandMonitorPrint, "m", "print monitor stats"},
	{CommandLogUp, "l+", "raise log level"},
	{CommandLogDown, "l-", "lower log level"},
}

// Parser reads newline-delimited commands from r and dispatches each
// recognized one to Handler.
type Parser struct {
	scanner *bufio.Scanner
	log     *zap.SugaredLogger
}

// NewParser constructs a Parser over r, printing the available
// command set via log.
func NewParser(r io.Reader, log *zap.SugaredLogger) *Parser {
	p := &Parser{scanner: bufio.NewScanner(r), log: log}
	p.printCommands()
	return p
}

func (p *Parser) printCommands() {
	if p.log == nil {
		return
	}
	p.log.Info("Available commands:")
	for _, d := range commandDescriptions {
		p.log.Infof("  '%s' ... %s", d.input, d.descr)
	}
}

// Next blocks until a line is read, returning the parsed Command (or
// CommandUnknown for unrecognized input) and false once the reader is
// exhausted.
func (p *Parser) Next() (Command, bool) {
	if !p.scanner.Scan() {
		return CommandUnknown, false
	}
	line := strings.TrimSpace(p.scanner.Text())
	cmd, ok := commandMap[line]
	if !ok {
		return CommandUnknown, true
	}
	return cmd, true
}
