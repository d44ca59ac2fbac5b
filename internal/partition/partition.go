// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package partition splits a category list and an inclusive month range into
// independent query tasks, one per (category, month) pair.
package partition

import (
	"fmt"
	"time"
)

// MonthRange is one calendar month. First and Last are inclusive dates at
// midnight UTC; Last is the day before the first day of the next month.
type MonthRange struct {
	First time.Time `json:"first" yaml:"first"`
	Last  time.Time `json:"last" yaml:"last"`
}

// String returns the month as yyyy-mm.
func (m MonthRange) String() string {
	return m.First.Format("2006-01")
}

// MonthOf returns the range covering the given calendar month.
func MonthOf(year int, month time.Month) MonthRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	if month == time.December {
		next = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return MonthRange{First: first, Last: next.AddDate(0, 0, -1)}
}

// MonthsBetween returns every month from start's month through end's month,
// inclusive. Days within the month are ignored. An end before start yields
// no months.
func MonthsBetween(start, end time.Time) []MonthRange {
	total := (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	if total <= 0 {
		return nil
	}

	months := make([]MonthRange, 0, total)
	year, month := start.Year(), start.Month()
	for range total {
		months = append(months, MonthOf(year, month))
		if month == time.December {
			year, month = year+1, time.January
		} else {
			month++
		}
	}
	return months
}

// Task is one bounded query: a category over a single month, returning at
// most Cap papers.
type Task struct {
	Category string     `json:"category" yaml:"category"`
	Month    MonthRange `json:"month" yaml:"month"`
	Cap      int        `json:"cap" yaml:"cap"`
}

// String identifies the task in log lines (e.g. "cs.AI 2023-01").
func (t Task) String() string {
	return fmt.Sprintf("%s %s", t.Category, t.Month)
}

// CapPerCategory splits the monthly budget evenly across categories. The
// remainder of the division is dropped.
func CapPerCategory(papersPerMonth, categories int) int {
	if categories == 0 {
		return 0
	}
	return papersPerMonth / categories
}

// Partition returns one task per (category, month) pair, months outermost,
// each with an equal share of papersPerMonth. With no categories it returns
// nil.
func Partition(categories []string, start, end time.Time, papersPerMonth int) []Task {
	if len(categories) == 0 {
		return nil
	}
	capPer := CapPerCategory(papersPerMonth, len(categories))

	months := MonthsBetween(start, end)
	tasks := make([]Task, 0, len(months)*len(categories))
	for _, m := range months {
		for _, c := range categories {
			tasks = append(tasks, Task{Category: c, Month: m, Cap: capPer})
		}
	}
	return tasks
}
