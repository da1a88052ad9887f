package sample

import "fmt"

// Threshold is compared against every score.
const Threshold = 10

// Score combines two readings.
func Score(a int, b int) int {
	total := a + b
	if total > Threshold {
		return total * 2
	}
	return total
}

// Report prints a score.
func Report(name string) {
	fmt.Println(name, Score(1, 2))
}
