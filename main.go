// Command engageops runs the security-assessment orchestration server.
package main

import "github.com/nextlevelbuilder/engageops/cmd"

func main() {
	cmd.Execute()
}
