// Command verify checks the integrity of a slicer output directory: the
// daily index against the files on disk, the structure of every daily slice,
// running totals across dates, the country slices and the location info table.
//
// Usage:
//
//	go run ./cmd/verify -dir dist
package main

import (
	"flag"
	"fmt"
	"os"
)

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "slicer output directory (contains d/, c/ and location_info.data)")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*dir))
}

func run(dir string) int {
	fmt.Println("=== Slice Output Verification ===")
	fmt.Println()

	out, err := loadOutput(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkIndex(out),
		checkDailySlices(out),
		checkRunningTotals(out),
		checkCountrySlices(out),
		checkLocationInfo(out),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d daily slices, %d index entries, %d country slices, %d locations\n",
		len(out.daily), len(out.index), len(out.countries), len(out.locations))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nVerification FAILED.")
	return 1
}
