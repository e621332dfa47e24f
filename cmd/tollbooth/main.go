// Tollbooth is a policy decision core for agent actions.
//
// It evaluates read/write actions against togglable rules and a
// load-adaptive protection level, and records every decision as a signed,
// immutable receipt.
//
// Usage:
//
//	# Start the server with default configuration
//	tollbooth run
//
//	# Start with a custom configuration file
//	tollbooth run --config /etc/tollbooth/config.yaml
//
//	# Generate a signing secret
//	tollbooth keys generate
//
//	# Verify a receipt token offline
//	tollbooth verify --token "eyJhbGci..."
//
//	# Query the receipt ledger
//	tollbooth receipts query --subject agent-7 --decision DENY
package main

func main() {
	Execute()
}
