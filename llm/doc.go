// Package llm provides chat model backends for statement extraction.
package llm
