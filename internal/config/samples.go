package config

import "sort"

// Samples are small programs that show off the visualizer.
var Samples = map[string]string{
	"hello": `# Define an array to visualize it
arr = [1, 2, 3, 4, 5]

# Print check
print("Hello visualizer")
print(arr)
`,
	"squares": `arr = [10, 20, 30, 40]
for x in arr:
    y = x * x
    print(x, y)
`,
	"running_sum": `nums = [3, 1, 4, 1, 5, 9]
total = 0
for n in nums:
    total += n
    print("total", total)
`,
	"dict": `ages = {'ada': 36, 'alan': 41, 'grace': 85}
for name in ages:
    age = ages[name]
    print(name, age)
`,
	"set": `seen = {4, 2, 4, 8, 2}
print(seen)
for v in seen:
    half = v / 2
    print(v, half)
`,
	"chars": `word = "loop"
for c in word:
    up = c + "!"
    print(up)
`,
	"indices": `grid = [5, 6, 7, 8]
k = 2
print(grid[0], grid[k], grid[-1])
for g in grid:
    doubled = g * 2
    print(doubled)
`,
}

// GetSample returns the named sample program.
func GetSample(name string) (string, bool) {
	src, ok := Samples[name]
	return src, ok
}

// ListSamples returns sample names, sorted.
func ListSamples() []string {
	names := make([]string, 0, len(Samples))
	for name := range Samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
