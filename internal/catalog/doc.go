// Package catalog identifies cards from OCR text against a local card list.
//
// Cards load from JSON (a bare array or a {"data": [...]} export), NDJSON, or
// a SQLite database with a cards table. Identification tries an exact
// normalized name, then a collector number, then a fuzzy name search refined
// by rules-text overlap. Scores run from 0 to 100.
package catalog
