// Package version holds the release version reported by the CLI, the
// status endpoint and MQTT discovery.
package version

// Version is the facewatch release version.
const Version = "1.1.0"
