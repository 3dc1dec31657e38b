// Package config loads and validates the hotbridge.json project
// configuration consumed by the dev server and the request gateway.
package config
