// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package agent provides the wiki question answering agent.

# Overview

WikiAgent answers natural-language questions about Indonesian mountains and
provinces using the pages of a single content site. Every call to
ProcessQuery returns a ResultEnvelope; retrieval, fetch and synthesis
failures are reported inside the envelope instead of as Go errors.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                 WikiAgent.ProcessQuery                      │
	├─────────────────────────────────────────────────────────────┤
	│  Classifier   → simple / comparison / report / complex      │
	│  Retrieval    → site search, direct URLs, query variations  │
	│  Extractor    → page title, sections, normalized text       │
	│  MultiHop     → related pages for complex_analysis queries  │
	├─────────────────────────────────────────────────────────────┤
	│  ResponseAssembler                                          │
	│   (SynthesisContext → Synthesizer or local fallback)        │
	├─────────────────────────────────────────────────────────────┤
	│                    LLM Provider (optional)                  │
	└─────────────────────────────────────────────────────────────┘

When no provider is configured the classifier uses keyword heuristics and
the assembler builds an extractive markdown answer from the fetched pages.

# Usage

Build an agent with the builder:

	wa, err := agent.NewWikiAgentBuilder().
	    WithProfile(rag.DefaultSiteProfile()).
	    WithProvider(provider).
	    WithLogger(logger).
	    Build()
	if err != nil {
	    log.Fatal(err)
	}

	env := wa.ProcessQuery(ctx, "Gunung Agung lokasinya ada dimana")
	fmt.Println(env.Answer, env.Sources)

Or from configuration:

	wa, err := agent.NewFromConfig(cfg, collector, logger)

# Envelope

  - Found is true only when at least one page was retrieved.
  - Sources lists page URLs in retrieval order.
  - Answer is always markdown; Format is always "markdown".

The evaluation subpackage runs the agent against scored test cases.
*/
package agent
