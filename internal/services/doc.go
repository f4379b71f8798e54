// Package services wires the fact-check pipeline from configuration.
//
// Build creates the provider clients and the vector store; NewRegistry
// assembles retrieval, ingestion and the per-model chat services on top
// of them. Both binaries share the result through the Registry accessors.
package services
