package channel

import "testing"

func TestModalityIsMedia(t *testing.T) {
	t.Parallel()

	media := []Modality{ModalityPhoto, ModalityDocument, ModalityAudio, ModalityVoice}
	for _, m := range media {
		if !m.IsMedia() {
			t.Fatalf("%s should be media", m)
		}
	}
	for _, m := range []Modality{ModalityText, ModalityButton, ModalityContact, ModalityCommand} {
		if m.IsMedia() {
			t.Fatalf("%s should not be media", m)
		}
	}
}

func TestAttachmentHasReference(t *testing.T) {
	t.Parallel()

	if (Attachment{}).HasReference() {
		t.Fatal("empty attachment should have no reference")
	}
	if !(Attachment{Ref: "file-1"}).HasReference() {
		t.Fatal("ref should count as reference")
	}
	if !(Attachment{URL: "https://example.com/a.ogg"}).HasReference() {
		t.Fatal("url should count as reference")
	}
}

func TestButtonRows(t *testing.T) {
	t.Parallel()

	rows := ButtonRows(Button{Label: "A", Action: "a"}, Button{Label: "B", Action: "b"})
	if len(rows) != 2 || len(rows[0]) != 1 || rows[1][0].Action != "b" {
		t.Fatalf("unexpected layout: %#v", rows)
	}
	if !(Prompt{Text: "  "}).IsEmpty() {
		t.Fatal("blank prompt should be empty")
	}
}
