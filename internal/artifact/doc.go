// Package artifact provides durable storage for generated files (question
// set CSVs, workbooks, extraction reports) plus the retention sweeper that
// expires old jobs and artifacts.
//
// Filenames are derived by the dispatcher, never taken from user input;
// the store still re-validates every name it is handed as a second line
// of defense against path traversal.
package artifact
