// Package version reports what binary is running.
//
// Version, commit, branch and build time are stamped at link time and fall
// back to the VCS settings Go embeds in the binary:
//
//	go build -ldflags "-X github.com/kbukum/lifecycle/version.Version=1.4.0 \
//	    -X github.com/kbukum/lifecycle/version.GitBranch=$(git branch --show-current)"
package version
