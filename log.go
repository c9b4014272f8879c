package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// log is the host side logger. Kernel diagnostics go to the console.
var log = logrus.New()

func setLogLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(l)
	return nil
}

func hex16(v uint16) string { return fmt.Sprintf("%#04x", v) }
func hex64(v uint64) string { return fmt.Sprintf("%#x", v) }
