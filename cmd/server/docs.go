package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           PropMarket API
// @version         0.1.0
// @description     Property registry, fractional share ledger, and marketplace.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
