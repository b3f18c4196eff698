// Package common holds the error taxonomy shared by the volume indexing
// packages and the counters the build service reports.
package common
