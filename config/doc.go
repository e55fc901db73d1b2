// Package config loads MediaFlow settings from the environment, with an
// optional .env file for local development. Vendor credentials are plain
// environment variables; nothing here talks to the network.
package config
