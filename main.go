// Command jobauth runs the Job & Authorization Engine gateway, or one of its
// operational subcommands (serve, doctor, migrate, version).
package main

import "github.com/nextlevelbuilder/jobauth/cmd"

func main() {
	cmd.Execute()
}
