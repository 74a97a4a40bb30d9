// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package records is the client for the agency record store, the system of
// record for clients, people, budgets, and job numbers. The assistant's tools
// are thin adapters over the Store interface defined here.
package records

// Person is one entry in the agency people directory.
type Person struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	ClientCode string `json:"clientCode"`
}

// PeopleResult is the result of a people directory search.
type PeopleResult struct {
	Count  int      `json:"count"`
	People []Person `json:"people"`
}

// PeopleQuery narrows a people search. Both fields are optional; an empty
// query returns the whole directory (bounded upstream).
type PeopleQuery struct {
	ClientCode string
	SearchTerm string
}

// QuarterBudget is the budget position for one labelled quarter.
type QuarterBudget struct {
	Label  string  `json:"label"` // e.g. "Q3 FY26"
	Budget float64 `json:"budget"`
	Spent  float64 `json:"spent"`
}

// ClientDetail is the commercial record for one client, merged from the
// client row and the budget tracker row.
type ClientDetail struct {
	ClientCode      string        `json:"clientCode"`
	ClientName      string        `json:"clientName"`
	CurrentQuarter  QuarterBudget `json:"currentQuarter"`
	LastQuarter     QuarterBudget `json:"lastQuarter"`
	RolloverEnabled bool          `json:"rolloverEnabled"`
	RolloverAmount  float64       `json:"rolloverAmount"`
	NextJobNumber   string        `json:"nextJobNumber"`
}

// SpendSummary is the budget position for one client over one period.
type SpendSummary struct {
	ClientCode      string  `json:"clientCode"`
	Period          string  `json:"period"`      // as requested, e.g. "thisQuarter"
	PeriodLabel     string  `json:"periodLabel"` // human label, e.g. "Q3 FY26"
	Budget          float64 `json:"budget"`
	Spent           float64 `json:"spent"`
	Remaining       float64 `json:"remaining"`
	PercentUsed     float64 `json:"percentUsed"`
	RolloverEnabled bool    `json:"rolloverEnabled"`
	RolloverApplied float64 `json:"rolloverApplied"`
}

// JobReservation is the outcome of reserving the next job number in a
// client's sequence. Reserving advances the sequence; NextJobNumber is the
// number a subsequent reservation would take.
type JobReservation struct {
	ClientCode        string `json:"clientCode"`
	ReservedJobNumber string `json:"reservedJobNumber"`
	NextJobNumber     string `json:"nextJobNumber"`
}
