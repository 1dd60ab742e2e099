// Command homography estimates and previews homographies from a pairs file
// without the GUI.
package main

import "homography-finder/cmd/homography/cmd"

func main() {
	cmd.Execute()
}
