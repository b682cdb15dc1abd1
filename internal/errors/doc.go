// Package errors provides coded, actionable errors for the nodesync command.
//
// Each code (e.g., "N101") maps to a short message, an optional explanation
// and a fix hint:
//
//	err := errors.New("N101").WithDetail("No nodesync.yaml in /srv/app")
//	errors.Fprint(os.Stderr, err)
//	// ERROR N101: Configuration file not found
//	//
//	//   No nodesync.yaml in /srv/app
//	//
//	//   Hint: Run 'nodesync serve' without --config to use defaults, or create nodesync.yaml
package errors
