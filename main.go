// Command sprintgate runs the externally enforced sprint review.
package main

import "sprintgate/internal/cli"

func main() {
	cli.Execute()
}
