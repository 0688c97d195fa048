// Aegis is a reverse-proxy gateway that enforces declarative least-privilege
// policy on every tool call an agent makes.
//
// Usage:
//
//	# Start the gateway with default configuration
//	aegis run
//
//	# Validate policy files without starting the gateway
//	aegis lint --dir ./policies
//
//	# Show version information
//	aegis version
package main

func main() {
	Execute()
}
