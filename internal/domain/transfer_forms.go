package domain

import "sync"

// TransferForms tracks the ordered set of forms offered for a transfer and
// which of them are selected. Selection is keyed by FormKey, so it survives
// Merge for every form that is still present. Listeners registered with
// OnChange run after each mutating call, outside the lock.
type TransferForms struct {
	mu        sync.Mutex
	forms     []FormMetadata
	selected  map[FormKey]struct{}
	listeners map[int]func()
	nextID    int
}

func NewTransferForms(forms ...FormMetadata) *TransferForms {
	tf := &TransferForms{
		selected:  map[FormKey]struct{}{},
		listeners: map[int]func(){},
	}
	tf.forms = dedupe(forms)
	return tf
}

// OnChange registers fn and returns a function that unregisters it.
func (tf *TransferForms) OnChange(fn func()) func() {
	tf.mu.Lock()
	id := tf.nextID
	tf.nextID++
	tf.listeners[id] = fn
	tf.mu.Unlock()

	return func() {
		tf.mu.Lock()
		delete(tf.listeners, id)
		tf.mu.Unlock()
	}
}

// Merge replaces the form set. Selections for forms that are no longer
// present are kept dormant and apply again if the form comes back.
func (tf *TransferForms) Merge(forms []FormMetadata) {
	tf.mu.Lock()
	tf.forms = dedupe(forms)
	tf.mu.Unlock()
	tf.notify()
}

func (tf *TransferForms) SelectAll() {
	tf.mu.Lock()
	for _, f := range tf.forms {
		tf.selected[f.Key] = struct{}{}
	}
	tf.mu.Unlock()
	tf.notify()
}

func (tf *TransferForms) ClearAll() {
	tf.mu.Lock()
	tf.selected = map[FormKey]struct{}{}
	tf.mu.Unlock()
	tf.notify()
}

func (tf *TransferForms) SetSelected(key FormKey, selected bool) {
	tf.mu.Lock()
	if selected {
		tf.selected[key] = struct{}{}
	} else {
		delete(tf.selected, key)
	}
	tf.mu.Unlock()
	tf.notify()
}

func (tf *TransferForms) IsSelected(key FormKey) bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	_, ok := tf.selected[key]
	return ok
}

// SomeSelected reports whether at least one current form is selected.
func (tf *TransferForms) SomeSelected() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	for _, f := range tf.forms {
		if _, ok := tf.selected[f.Key]; ok {
			return true
		}
	}
	return false
}

// AllSelected reports whether every current form is selected. It is false
// for an empty form set.
func (tf *TransferForms) AllSelected() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if len(tf.forms) == 0 {
		return false
	}
	for _, f := range tf.forms {
		if _, ok := tf.selected[f.Key]; !ok {
			return false
		}
	}
	return true
}

// SelectedForms returns the selected forms in form-set order.
func (tf *TransferForms) SelectedForms() []FormMetadata {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	out := make([]FormMetadata, 0, len(tf.forms))
	for _, f := range tf.forms {
		if _, ok := tf.selected[f.Key]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (tf *TransferForms) Forms() []FormMetadata {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	out := make([]FormMetadata, len(tf.forms))
	copy(out, tf.forms)
	return out
}

// Get returns the current metadata for key.
func (tf *TransferForms) Get(key FormKey) (FormMetadata, bool) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	for _, f := range tf.forms {
		if f.Key == key {
			return f, true
		}
	}
	return FormMetadata{}, false
}

// Update replaces the metadata of a form already in the set.
func (tf *TransferForms) Update(meta FormMetadata) {
	tf.mu.Lock()
	found := false
	for i := range tf.forms {
		if tf.forms[i].Key == meta.Key {
			tf.forms[i] = meta
			found = true
			break
		}
	}
	tf.mu.Unlock()
	if found {
		tf.notify()
	}
}

func (tf *TransferForms) Len() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.forms)
}

func (tf *TransferForms) notify() {
	tf.mu.Lock()
	fns := make([]func(), 0, len(tf.listeners))
	for id := 0; id < tf.nextID; id++ {
		if fn, ok := tf.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	tf.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// dedupe keeps the first occurrence of each key, preserving order.
func dedupe(forms []FormMetadata) []FormMetadata {
	seen := make(map[FormKey]struct{}, len(forms))
	out := make([]FormMetadata, 0, len(forms))
	for _, f := range forms {
		if _, ok := seen[f.Key]; ok {
			continue
		}
		seen[f.Key] = struct{}{}
		out = append(out, f)
	}
	return out
}
