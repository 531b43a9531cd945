package assembler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/local/bookletizer/internal/imposition"
)

// pageImage encodes the page index and rotation in the image bounds.
type pageImage struct {
	image.Image
	index int
	rot   imposition.Rotation
}

type fakeRenderer struct {
	mu     sync.Mutex
	calls  map[int]int
	failAt int
}

func newFakeRenderer() *fakeRenderer { return &fakeRenderer{calls: map[int]int{}, failAt: -1} }

func (r *fakeRenderer) Render(ctx context.Context, idx int, rot imposition.Rotation) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx == r.failAt {
		return nil, errors.New("corrupt page")
	}
	r.calls[idx]++
	return pageImage{Image: image.NewGray(image.Rect(0, 0, 1, 1)), index: idx, rot: rot}, nil
}

type face struct {
	placed map[Slot]pageImage
	guide  *bool
	label  string
}

type fakeBooklet struct {
	ordinal  int
	faces    []*face
	finished bool
}

func (b *fakeBooklet) NextPage() error {
	b.faces = append(b.faces, &face{placed: map[Slot]pageImage{}})
	return nil
}

func (b *fakeBooklet) cur() (*face, error) {
	if len(b.faces) == 0 {
		return nil, errors.New("no page started")
	}
	return b.faces[len(b.faces)-1], nil
}

func (b *fakeBooklet) Place(slot Slot, img image.Image) error {
	f, err := b.cur()
	if err != nil {
		return err
	}
	f.placed[slot] = img.(pageImage)
	return nil
}

func (b *fakeBooklet) DrawFoldGuide(back bool) error {
	f, err := b.cur()
	if err != nil {
		return err
	}
	f.guide = &back
	return nil
}

func (b *fakeBooklet) Label(text string) error {
	f, err := b.cur()
	if err != nil {
		return err
	}
	f.label = text
	return nil
}

func (b *fakeBooklet) Finish() (string, error) {
	b.finished = true
	return fmt.Sprintf("out/doc_%02d.pdf", b.ordinal), nil
}

type fakeWriter struct {
	mu       sync.Mutex
	booklets map[int]*fakeBooklet
}

func (w *fakeWriter) Begin(info BookletInfo) (Booklet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.booklets == nil {
		w.booklets = map[int]*fakeBooklet{}
	}
	b := &fakeBooklet{ordinal: info.Ordinal}
	w.booklets[info.Ordinal] = b
	return b, nil
}

func TestRunSingleBookletMiddle(t *testing.T) {
	r, w := newFakeRenderer(), &fakeWriter{}
	a := New(r, w, Options{Layout: imposition.Config{SheetsPerBooklet: 10}, FoldGuide: true, Labels: true})

	res, err := a.Run(context.Background(), 40, nil)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if len(res.Booklets) != 1 || res.Booklets[0].Sides != 20 || res.Booklets[0].Pages != 40 {
		t.Fatalf("result = %+v", res)
	}
	if res.Booklets[0].Path != "out/doc_01.pdf" {
		t.Errorf("path = %q", res.Booklets[0].Path)
	}

	bk := w.booklets[1]
	if !bk.finished || len(bk.faces) != 20 {
		t.Fatalf("booklet finished=%v faces=%d", bk.finished, len(bk.faces))
	}
	first := bk.faces[0]
	if first.placed[SlotBottom].index != 0 || first.placed[SlotTop].index != 39 {
		t.Errorf("first face bottom/top = %d/%d, want 0/39", first.placed[SlotBottom].index, first.placed[SlotTop].index)
	}
	if first.placed[SlotBottom].rot != imposition.RotateCW90 || bk.faces[1].placed[SlotBottom].rot != imposition.RotateCCW90 {
		t.Errorf("front faces turn clockwise, back faces counter-clockwise")
	}

	labels := 0
	for i, f := range bk.faces {
		if f.guide == nil || *f.guide != (i%2 == 1) {
			t.Errorf("face %d: fold guide %v", i, f.guide)
		}
		if f.label != "" {
			labels++
			if i%2 == 1 {
				t.Errorf("face %d: back face labelled", i)
			}
			if f.label != "^- 1 -^" {
				t.Errorf("label = %q", f.label)
			}
		}
	}
	if labels != 10 {
		t.Errorf("%d labels, want 10", labels)
	}
	for i := 0; i < 40; i++ {
		if r.calls[i] != 1 {
			t.Errorf("page %d rendered %d times", i, r.calls[i])
		}
	}
}

func TestRunEdgeSwapsHalves(t *testing.T) {
	r, w := newFakeRenderer(), &fakeWriter{}
	a := New(r, w, Options{Layout: imposition.Config{SheetsPerBooklet: 10, Binding: imposition.BindingEdge}})
	if _, err := a.Run(context.Background(), 40, nil); err != nil {
		t.Fatalf("Run(): %v", err)
	}
	first := w.booklets[1].faces[0]
	if first.placed[SlotBottom].index != 20 || first.placed[SlotTop].index != 0 {
		t.Errorf("bottom/top = %d/%d, want 20/0", first.placed[SlotBottom].index, first.placed[SlotTop].index)
	}
	if first.label != "" || first.guide != nil {
		t.Errorf("guide and label drawn while disabled")
	}
}

func TestRunParallelKeptCover(t *testing.T) {
	r, w := newFakeRenderer(), &fakeWriter{}
	a := New(r, w, Options{
		Layout:   imposition.Config{SheetsPerBooklet: 10, HasCover: true, KeepCover: true},
		Parallel: 3,
	})
	var mu sync.Mutex
	seen := map[int]bool{}
	res, err := a.Run(context.Background(), 202, func(b BookletResult) {
		mu.Lock()
		defer mu.Unlock()
		seen[b.Ordinal] = true
	})
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if len(res.Booklets) != 5 || len(seen) != 5 {
		t.Fatalf("%d booklets, %d progress calls", len(res.Booklets), len(seen))
	}
	blanks := 0
	for i, b := range res.Booklets {
		if b.Ordinal != i+1 {
			t.Errorf("booklet %d has ordinal %d", i, b.Ordinal)
		}
		blanks += b.Blanks
	}
	if blanks != 2 {
		t.Errorf("%d blanks, want 2", blanks)
	}
	if len(r.calls) != 202 {
		t.Errorf("rendered %d distinct pages, want 202", len(r.calls))
	}
	cover := w.booklets[1].faces[0]
	if _, ok := cover.placed[SlotBottom]; ok || cover.placed[SlotTop].index != 0 {
		t.Errorf("cover face = %+v, want blank bottom and page 0 on top", cover.placed)
	}
	inside := w.booklets[1].faces[1]
	if inside.placed[SlotBottom].index != 1 || inside.placed[SlotTop].index != 42 {
		t.Errorf("inside of cover bottom/top = %d/%d, want 1/42", inside.placed[SlotBottom].index, inside.placed[SlotTop].index)
	}
}

func TestRunRenderFailureAbortsBooklet(t *testing.T) {
	r, w := newFakeRenderer(), &fakeWriter{}
	r.failAt = 5
	a := New(r, w, Options{Layout: imposition.Config{SheetsPerBooklet: 2}, Parallel: 2})
	_, err := a.Run(context.Background(), 32, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if w.booklets[1].finished {
		t.Error("booklet with a failed page was finished")
	}
}

func TestRunConfigError(t *testing.T) {
	a := New(newFakeRenderer(), &fakeWriter{}, Options{Layout: imposition.Config{}})
	if _, err := a.Run(context.Background(), 10, nil); !errors.Is(err, imposition.ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(newFakeRenderer(), &fakeWriter{}, Options{Layout: imposition.Config{SheetsPerBooklet: 4}})
	if _, err := a.Run(ctx, 16, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
