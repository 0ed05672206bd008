package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tree := Tree(ExternalStorageAuthority, "primary:Documents")
	inTree, err := DocumentInTree(tree, "primary:Documents/a.txt")
	require.NoError(t, err)

	tests := []struct {
		name string
		l    Locator
		want Kind
	}{
		{"file", File("/sdcard/a.txt"), KindFile},
		{"image", MediaItem(CollectionImages, 42), KindMediaItem},
		{"download", MediaItem(CollectionDownloads, 7), KindMediaItem},
		{"document", Document(ExternalStorageAuthority, "primary:Documents/a.txt"), KindDocument},
		{"tree", tree, KindTree},
		{"document in tree", inTree, KindDocument},
		{"downloads document", Document(DownloadsAuthority, "12"), KindDownloadsDocument},
		{"media document", Document(MediaDocumentsAuthority, "image:3"), KindMediaDocument},
		{"cloud", Document(CloudAuthority, "a.txt"), KindCloudDocument},
		{"unknown collection", Locator("content://media/external/files/media/1"), KindUnknown},
		{"foreign authority", Document("com.example.docs", "x"), KindUnknown},
		{"http", Locator("http://example.com/a"), KindUnknown},
		{"garbage", Locator("::"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.l.Kind(), tt.l.String())
		})
	}
}

func TestDocumentID(t *testing.T) {
	l := Document(ExternalStorageAuthority, "primary:Documents/a b.txt")
	assert.Equal(t, "content://com.android.externalstorage.documents/document/primary%3ADocuments%2Fa%20b.txt", l.String())

	id, ok := l.DocumentID()
	require.True(t, ok)
	assert.Equal(t, "primary:Documents/a b.txt", id)
	_, ok = l.TreeID()
	assert.False(t, ok)
	assert.Equal(t, ExternalStorageAuthority, l.Authority())
	assert.Equal(t, SchemeContent, l.Scheme())

	volume, rel, ok := SplitDocID(id)
	require.True(t, ok)
	assert.Equal(t, PrimaryVolume, volume)
	assert.Equal(t, "Documents/a b.txt", rel)
}

func TestDocumentInTree(t *testing.T) {
	tree := Tree(ExternalStorageAuthority, PrimaryDocID("/Documents"))
	treeID, ok := tree.TreeID()
	require.True(t, ok)
	assert.Equal(t, "primary:Documents", treeID)

	// a bare tree locator names its root document
	id, ok := tree.DocumentID()
	require.True(t, ok)
	assert.Equal(t, treeID, id)

	l, err := DocumentInTree(tree, "primary:Documents/x.txt")
	require.NoError(t, err)
	treeID, ok = l.TreeID()
	require.True(t, ok)
	assert.Equal(t, "primary:Documents", treeID)
	id, _ = l.DocumentID()
	assert.Equal(t, "primary:Documents/x.txt", id)
	assert.Equal(t, "primary:Documents/x.txt", l.LastSegment())

	_, err = DocumentInTree(Document(ExternalStorageAuthority, "primary:Documents"), "primary:Documents/x.txt")
	assert.ErrorContains(t, err, "invalid tree locator")
}

func TestMediaItem(t *testing.T) {
	tests := []struct {
		l          Locator
		collection string
		id         int64
		ok         bool
	}{
		{"content://media/external/images/media/42", CollectionImages, 42, true},
		{"content://media/external/video/media/1", CollectionVideo, 1, true},
		{"content://media/external/audio/media/9", CollectionAudio, 9, true},
		{"content://media/external/downloads/7", CollectionDownloads, 7, true},
		{"content://media/external/images/media/42?requireOriginal=1", CollectionImages, 42, true},
		{"content://media/external/images/media/x", "", 0, false},
		{"content://media/external/images/media/-1", "", 0, false},
		{"content://media/internal/images/media/1", "", 0, false},
		{"content://media/external/downloads/media/1", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.l.String(), func(t *testing.T) {
			collection, id, ok := tt.l.MediaItem()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.id, id)
		})
	}
	assert.Equal(t, Locator("content://media/external/images/media/42"), MediaItem(CollectionImages, 42))
}

func TestMediaDocument(t *testing.T) {
	tests := []struct {
		docID      string
		collection string
		id         int64
		ok         bool
	}{
		{"image:3", CollectionImages, 3, true},
		{"video:4", CollectionVideo, 4, true},
		{"audio:5", CollectionAudio, 5, true},
		{"document:6", "", 0, false},
		{"image:x", "", 0, false},
		{"image", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.docID, func(t *testing.T) {
			collection, id, ok := Document(MediaDocumentsAuthority, tt.docID).MediaDocument()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.id, id)
		})
	}

	_, _, ok := Document(ExternalStorageAuthority, "image:3").MediaDocument()
	assert.False(t, ok)
}

func TestOriginalMarker(t *testing.T) {
	item := MediaItem(CollectionImages, 42)
	assert.False(t, item.RequiresOriginal())

	orig := item.WithOriginal()
	assert.Equal(t, Locator("content://media/external/images/media/42?requireOriginal=1"), orig)
	assert.True(t, orig.RequiresOriginal())
	assert.Equal(t, orig, orig.WithOriginal())
	assert.Equal(t, KindMediaItem, orig.Kind())
	assert.Equal(t, item, orig.Base())

	withQuery := Locator(item.String() + "?limit=1").WithOriginal()
	assert.Equal(t, Locator(item.String()+"?limit=1&requireOriginal=1"), withQuery)

	f := File("/sdcard/a?b.txt")
	assert.Equal(t, f, f.WithOriginal())
	assert.False(t, f.RequiresOriginal())
	assert.Equal(t, f, f.Base())
}

func TestFilePath(t *testing.T) {
	p, ok := File("/sdcard/Documents/a.txt").FilePath()
	require.True(t, ok)
	assert.Equal(t, "/sdcard/Documents/a.txt", p)

	_, ok = Locator("file://").FilePath()
	assert.False(t, ok)
	_, ok = MediaItem(CollectionImages, 1).FilePath()
	assert.False(t, ok)
}

func TestIsDocument(t *testing.T) {
	assert.True(t, Document(CloudAuthority, "a").IsDocument())
	assert.True(t, Tree(ExternalStorageAuthority, "primary:").IsDocument())
	assert.False(t, MediaItem(CollectionAudio, 1).IsDocument())
	assert.False(t, File("/a").IsDocument())
	assert.Equal(t, "tree", KindTree.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
