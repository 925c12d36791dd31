// Package render turns engine state into something a person can look at.
//
// [Layout] is the pure step: it reads a registry, an engine snapshot and the
// highlight map and produces a [Frame]. The renderers only consume frames:
//
//   - [Terminal]: lipgloss blocks, one per structure
//   - [Status]: the playback indicator line
//   - [Plot] and [Sparkline]: history of a numeric variable
//   - [SavePNG]: a still image of one frame
//
// The loop target's current element is drawn in the theme's accent color and
// indices the program reads are drawn in its warning color.
package render
