// Package models holds the GORM models of the tables the application owns
// (apps.dashboards, drive.arquivos) and their mapping to domain types.
// Business tables are reached through catalog-driven SQL instead.
package models
