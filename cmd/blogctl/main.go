// Command blogctl runs maintenance tasks against the blog database.
package main

import "github.com/sakif/travel-blog/cmd/blogctl/commands"

func main() {
	commands.Execute()
}
