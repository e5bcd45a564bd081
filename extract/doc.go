// Package extract converts statement PDFs to plain text.
//
// Two backends are provided: Command runs a local pdftotext binary, and
// Docker runs a one-shot converter container. New picks a backend from
// configuration, falling back to the command backend when the Docker daemon
// is unreachable.
package extract
