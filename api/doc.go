// Package api describes the wikiagent HTTP API.
//
// # API Overview
//
// wikiagent answers natural-language questions about the mountains and
// provinces published on wiki.ambisius.com. The HTTP surface is small:
//   - POST /api/v1/query   runs one query through the retrieval pipeline
//   - GET  /health         liveness
//   - GET  /ready          readiness, including a HEAD probe of the wiki site
//   - GET  /version        build information
//
// Prometheus metrics are served on a separate port under /metrics.
//
// # Request
//
//	POST /api/v1/query
//	Content-Type: application/json
//
//	{"query": "Gunung Agung lokasinya ada dimana"}
//
// # Response
//
// Every successful call returns the result envelope, also when nothing was
// found on the wiki (found=false). Only malformed requests produce 4xx
// responses.
//
//	{
//	  "success": true,
//	  "data": {
//	    "id": "...",
//	    "query": "Gunung Agung lokasinya ada dimana",
//	    "found": true,
//	    "sources": ["https://wiki.ambisius.com/gunung/gunung-agung"],
//	    "answer": "...",
//	    "format": "markdown",
//	    "complexity": "simple",
//	    "timestamp": "2026-01-01T00:00:00Z"
//	  },
//	  "timestamp": "...",
//	  "request_id": "req-..."
//	}
package api
