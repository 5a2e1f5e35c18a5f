// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

// User prompt assembly. Each builder turns the case facts plus the relevant
// prior artifacts into the user half of one generation call; the system half
// comes from the role.

func caseHeader(c *datatypes.Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE: %s\n", c.Title)
	if c.Jurisdiction != "" {
		fmt.Fprintf(&b, "JURISDICTION: %s\n", c.Jurisdiction)
	}
	if c.Stakes != "" {
		fmt.Fprintf(&b, "STAKES: %s\n", c.Stakes)
	}
	fmt.Fprintf(&b, "\nFACTS:\n%s\n", c.Facts)
	return b.String()
}

// ProposalPrompt builds the strategist's prompt for a round. From round 2 on
// it includes the prior round's attacks so the strategist rebuts rather than
// repeats.
func ProposalPrompt(c *datatypes.Case, round int, priorAttacks []datatypes.Counterargument) string {
	var b strings.Builder
	b.WriteString(caseHeader(c))
	if round == 1 {
		b.WriteString("\nPropose your primary legal strategy for this case. ")
		b.WriteString("State the theory of the case, the key moves, and why this approach wins.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "\nThis is deliberation round %d. Opposing counsel attacked your prior strategy as follows:\n\n", round)
	for i, atk := range priorAttacks {
		fmt.Fprintf(&b, "ATTACK %d:\n%s\n\n", i+1, atk.Content)
	}
	b.WriteString("Revise and strengthen your strategy. Address each attack directly: ")
	b.WriteString("concede what must be conceded, rebut what can be rebutted, and adjust the approach where the attack landed.\n")
	return b.String()
}

// ResearchPrompt builds the researcher's round-1 prompt.
func ResearchPrompt(c *datatypes.Case) string {
	var b strings.Builder
	b.WriteString(caseHeader(c))
	b.WriteString("\nIdentify the controlling precedents, statutes, and doctrines for this case. ")
	b.WriteString("Explain how each applies to the facts, which side it favors, and any jurisdictional wrinkles counsel must not miss.\n")
	return b.String()
}

// AttackPrompt builds the adversary's prompt against one argument.
func AttackPrompt(c *datatypes.Case, target *datatypes.Argument) string {
	var b strings.Builder
	b.WriteString(caseHeader(c))
	fmt.Fprintf(&b, "\nPROPOSED STRATEGY (by %s, round %d):\n%s\n", target.Agent, target.Round, target.Content)
	b.WriteString("\nAttack this strategy as opposing counsel. Identify its weakest factual assumptions, ")
	b.WriteString("its legal vulnerabilities, and the counter-narrative you would run against it at trial.\n")
	return b.String()
}

// SynthesisPrompt builds the synthesizer's prompt over the full case history.
func SynthesisPrompt(c *datatypes.Case, args []datatypes.Argument,
	counters []datatypes.Counterargument, conflicts []datatypes.Conflict) string {

	var b strings.Builder
	b.WriteString(caseHeader(c))

	b.WriteString("\n=== ARGUMENTS ===\n")
	for _, a := range args {
		fmt.Fprintf(&b, "\n[%s, round %d]\n%s\n", a.Agent, a.Round, a.Content)
	}
	b.WriteString("\n=== COUNTERARGUMENTS ===\n")
	for _, ca := range counters {
		fmt.Fprintf(&b, "\n[%s, round %d]\n%s\n", ca.Agent, ca.Round, ca.Content)
	}
	if len(conflicts) > 0 {
		b.WriteString("\n=== IDENTIFIED CONFLICTS ===\n")
		for _, cf := range conflicts {
			fmt.Fprintf(&b, "\n[severity: %s] %s\n", cf.Severity, cf.Description)
		}
	}
	b.WriteString("\nSynthesize the council's final strategy. Resolve the conflicts, ")
	b.WriteString("state the recommended approach, how it survives the strongest attacks, the key risks, and concrete next steps.\n")
	return b.String()
}
