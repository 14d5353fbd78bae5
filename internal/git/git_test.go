package git

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/src/shape.hpp b/src/shape.hpp
index 1111111..2222222 100644
--- a/src/shape.hpp
+++ b/src/shape.hpp
@@ -3,0 +4,2 @@ class Shape {
+    int sides;
+    int color;
@@ -10 +12 @@ public:
-    void draw();
+    virtual void draw() = 0;
diff --git a/src/old.hpp b/src/old.hpp
deleted file mode 100644
--- a/src/old.hpp
+++ /dev/null
@@ -1,3 +0,0 @@
-class Old {};
diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1,0 +2 @@
+more
`

func TestParseDiff(t *testing.T) {
	root := filepath.FromSlash("/repo")
	changes, err := parseDiff([]byte(sampleDiff), root)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, filepath.Join(root, "src", "shape.hpp"), changes[0].Path)
	assert.Equal(t, []int{4, 5, 12}, changes[0].ChangedLines)
	assert.Equal(t, filepath.Join(root, "README.md"), changes[1].Path)
	assert.Equal(t, []int{2}, changes[1].ChangedLines)
}

func TestParseDiff_MalformedHunk(t *testing.T) {
	_, err := parseDiff([]byte("+++ b/a.hpp\n@@ nonsense @@\n"), "")
	assert.Error(t, err)
}
