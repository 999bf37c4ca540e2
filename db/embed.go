// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema creates the users, products, cart_items and orders tables.
//
//go:embed migrations/001_schema.sql
var Schema string
