// fakesim stands in for the simc binary in local and end-to-end runs. It
// reads a profile, prints progress like simc does and writes a small HTML
// report to the path given by the html= line.
//
// Usage: fakesim <profile.simc>
package main

import (
	"bufio"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: fakesim <profile.simc>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

type profile struct {
	actor      string
	output     string
	iterations int
	scaling    bool
}

func run(path string) error {
	p, err := parse(path)
	if err != nil {
		return err
	}
	if p.actor == "" {
		return fmt.Errorf("no actor defined in %s", path)
	}
	if p.output == "" {
		return fmt.Errorf("no html output configured in %s", path)
	}

	fmt.Printf("SimulationCraft (fakesim)\n\n")
	fmt.Printf("Generating baseline for %s...\n", p.actor)
	steps := 5
	for i := 1; i <= steps; i++ {
		time.Sleep(50 * time.Millisecond)
		fmt.Printf("Simulating... ( %d/%d iterations )\n", p.iterations*i/steps, p.iterations)
	}
	if p.scaling {
		fmt.Println("Generating scale factors...")
	}

	report := fmt.Sprintf("<!DOCTYPE html>\n<html><head><title>%[1]s</title></head>"+
		"<body><h1>%[1]s</h1><p>%[2]d iterations</p></body></html>\n",
		html.EscapeString(p.actor), p.iterations)
	if err := os.WriteFile(p.output, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Printf("HTML report: %s\n", p.output)
	return nil
}

func parse(path string) (profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return profile{}, err
	}
	defer f.Close()

	p := profile{iterations: 1000}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}
		switch key {
		case "html":
			p.output = value
		case "iterations":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				p.iterations = n
			}
		case "calculate_scale_factors":
			p.scaling = value == "1"
		case "warrior", "paladin", "hunter", "rogue", "priest", "deathknight",
			"shaman", "mage", "warlock", "monk", "druid", "demonhunter", "evoker":
			if p.actor == "" {
				p.actor = strings.Trim(value, `"`)
			}
		}
	}
	return p, sc.Err()
}
