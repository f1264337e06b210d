// The main package for the embassy-scraper executable.
package main

import "github.com/JakeFAU/embassy-scraper/cmd"

func main() {
	cmd.Execute()
}
