// Package ui renders the plain-text tables printed by the CLI's one-shot
// commands (scan, health).
package ui

import (
	"fmt"
	"strings"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/opportunity"
)

// PrintHeader prints the banner line above the opportunities table.
func PrintHeader(active, working, total int) {
	fmt.Printf("SPREAD OPPORTUNITIES | Active: %d | Venues: %d/%d healthy\n", active, working, total)
	fmt.Println(strings.Repeat("=", 78))
}

// PrintOpportunities renders one row per active opportunity, in the order
// given; it does not sort the rows.
func PrintOpportunities(rows []opportunity.ActiveOpportunity) {
	fmt.Printf("%-20s %-6s %-6s %-10s %-10s %-10s\n", "INSTRUMENT", "A", "B", "SPREAD%", "PROFIT", "DIRECTION")
	for _, o := range rows {
		fmt.Printf("%-20s %-6s %-6s %-10.3f %-10.2f %-10s\n",
			o.ID.Instrument, o.ID.VenueA, o.ID.VenueB,
			o.Current.SpreadPct, o.Current.ImpliedProfit, o.Current.Direction)
	}
}

// PrintVenueHealth renders the working/failed venue lists from a health probe.
func PrintVenueHealth(working, failed []model.Venue) {
	fmt.Printf("working: %v\n", working)
	fmt.Printf("failed:  %v\n", failed)
}
