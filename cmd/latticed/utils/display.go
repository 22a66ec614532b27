// Package utils contains utility functions for the lattice daemon.
package utils

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB4CA"))
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// DisplayLogo prints the lattice logo with version information
func DisplayLogo(version string) {
	fmt.Println()
	fmt.Println(logoStyle.Render(` ░░░░░░░░░░░░░░░░░░░░░░░░░░░
 ░█░░░█▀█░▀█▀░▀█▀░▀█▀░█▀▀░█▀▀░
 ░█░░░█▀█░░█░░░█░░░█░░█░░░█▀▀░
 ░▀▀▀░▀░▀░░▀░░░▀░░▀▀▀░▀▀▀░▀▀▀░
 ░░░░░░░░░░░░░░░░░░░░░░░░░░░`))
	fmt.Printf("\n Lattice v%s - Cluster Communication Layer\n", version)
	fmt.Println(taglineStyle.Render(" Full-mesh messaging and leased leadership for controller nodes"))
	fmt.Println()
}
