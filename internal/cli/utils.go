package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

// AssertID checks whether a string is a valid id
func AssertID(id string) {
	if uuid := uuid.Parse(id); uuid == nil {
		log.WithFields(log.Fields{
			"id": id,
		}).Fatal("invalid id")
	}
}

// Read returns the non-empty lines of r
func Read(r io.Reader) []string {
	lines := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithField("error", err).Fatal("failed to read input")
	}
	return lines
}

// SplitList splits a comma separated list, dropping empty items
func SplitList(list string) []string {
	items := []string{}
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
