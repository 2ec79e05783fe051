package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog/v2"
	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/harness/inject"
	"github.com/maemowong/suprax-aes/proto/lockstep"
	"github.com/maemowong/suprax-aes/proto/redundancy"
)

// subsystemLoggers maps each subsystem tag to the logger that package writes to.
var subsystemLoggers = map[string]btclog.Logger{}

// setupLoggers creates one console logger per subsystem, hands it to its package and
// applies the --debuglevel value.
func setupLoggers(level string) error {
	handler := btclog.NewDefaultHandler(os.Stderr)

	register := func(tag string, use func(btclog.Logger)) {
		logger := btclog.NewSLogger(handler.SubSystem(tag))
		subsystemLoggers[tag] = logger
		use(logger)
	}
	register(suprax.Subsystem, suprax.UseLogger)
	register(redundancy.Subsystem, redundancy.UseLogger)
	register(lockstep.Subsystem, lockstep.UseLogger)
	register(inject.Subsystem, inject.UseLogger)

	return parseDebugLevel(level)
}

// parseDebugLevel accepts either a global level or a comma separated list of
// subsystem=level pairs, optionally led by a global level.
func parseDebugLevel(level string) error {
	levels := strings.Split(level, ",")

	global := levels[0]
	if !strings.Contains(global, "=") {
		if !validLogLevel(global) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				global)
		}
		for tag := range subsystemLoggers {
			setLogLevel(tag, global)
		}
		levels = levels[1:]
	}

	for _, pair := range levels {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level has an "+
				"invalid format [%v] -- use format "+
				"subsystem1=level1,subsystem2=level2", pair)
		}
		tag, lvl := fields[0], fields[1]

		if _, ok := subsystemLoggers[tag]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems are %v", tag,
				supportedSubsystems())
		}
		if !validLogLevel(lvl) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", lvl)
		}
		setLogLevel(tag, lvl)
	}
	return nil
}

func setLogLevel(tag, lvl string) {
	level, _ := btclog.LevelFromString(lvl)
	subsystemLoggers[tag].SetLevel(level)
}

func supportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func validLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}
	return false
}
