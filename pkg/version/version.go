package version

// Version is the build version reported by the API and the CLI. Release
// builds set it with -ldflags "-X github.com/chaskitbooks/chaskit/pkg/version.Version=1.2.0".
var Version = "dev"
