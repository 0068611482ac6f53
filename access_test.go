package main

import (
	"testing"

	"gorm.io/gorm"
)

type accessFixture struct {
	subject Subject
	section Section
	l1, l2  Lesson
	t1, t2  Test // section-wide, t1 created first
	lt2     Test // attached to l2
	student User
}

func buildAccessFixture(t *testing.T, db *gorm.DB, requiresCode bool) *accessFixture {
	t.Helper()
	f := &accessFixture{}
	teacher, _ := createUser(t, db, "fixteacher", RoleTeacher)
	f.student = *mustCreateStudent(t, db, "fixstudent")

	f.subject = Subject{Name: "Maths", CreatedBy: teacher.ID}
	if err := db.Create(&f.subject).Error; err != nil {
		t.Fatalf("subject: %v", err)
	}
	f.section = Section{SubjectID: f.subject.ID, Title: "Algebra", RequiresCode: requiresCode}
	if err := db.Create(&f.section).Error; err != nil {
		t.Fatalf("section: %v", err)
	}
	f.l1 = Lesson{SectionID: f.section.ID, Title: "Intro", Content: "x", RequiresCode: false}
	f.l2 = Lesson{SectionID: f.section.ID, Title: "Equations", Content: "y", RequiresCode: true}
	for _, l := range []*Lesson{&f.l1, &f.l2} {
		if err := db.Create(l).Error; err != nil {
			t.Fatalf("lesson: %v", err)
		}
	}
	f.t1 = Test{SectionID: f.section.ID, Title: "Entry test", CreatedBy: teacher.ID, RequiresCode: false}
	f.t2 = Test{SectionID: f.section.ID, Title: "Final test", CreatedBy: teacher.ID, RequiresCode: true}
	f.lt2 = Test{SectionID: f.section.ID, LessonID: &f.l2.ID, Title: "Equations quiz", CreatedBy: teacher.ID}
	for _, ts := range []*Test{&f.t1, &f.t2, &f.lt2} {
		if err := db.Create(ts).Error; err != nil {
			t.Fatalf("test: %v", err)
		}
	}
	return f
}

func mustCreateStudent(t *testing.T, db *gorm.DB, username string) *User {
	t.Helper()
	u, _ := createUser(t, db, username, RoleStudent)
	return u
}

func (f *accessFixture) context(t *testing.T, db *gorm.DB) *AccessContext {
	t.Helper()
	var section Section
	if err := db.Preload("Lessons").Preload("Tests").First(&section, f.section.ID).Error; err != nil {
		t.Fatalf("reload section: %v", err)
	}
	ac, err := NewAccessContext(db, &section, f.student.ID)
	if err != nil {
		t.Fatalf("access context: %v", err)
	}
	return ac
}

func TestAccessLockedSectionDefaults(t *testing.T) {
	db := newTestDB(t)
	f := buildAccessFixture(t, db, true)
	ac := f.context(t, db)

	if ac.SectionOpen {
		t.Error("locked section reported open")
	}
	if !ac.LessonOpen(&f.l1) {
		t.Error("first lesson should always be free")
	}
	if ac.LessonOpen(&f.l2) {
		t.Error("second lesson open without activation")
	}
	if !ac.TestOpen(&f.t1) {
		t.Error("first section-wide test should always be free")
	}
	if ac.TestOpen(&f.t2) {
		t.Error("second section-wide test open without activation")
	}
	if ac.TestOpen(&f.lt2) {
		t.Error("lesson test open without lesson activation")
	}
}

func TestAccessOpenSection(t *testing.T) {
	db := newTestDB(t)
	f := buildAccessFixture(t, db, false)
	ac := f.context(t, db)

	if !ac.SectionOpen {
		t.Fatal("code-free section should be open")
	}
	for _, l := range []*Lesson{&f.l1, &f.l2} {
		if !ac.LessonOpen(l) {
			t.Errorf("lesson %q closed in an open section", l.Title)
		}
	}
	for _, ts := range []*Test{&f.t1, &f.t2, &f.lt2} {
		if !ac.TestOpen(ts) {
			t.Errorf("test %q closed in an open section", ts.Title)
		}
	}
}

func TestAccessLessonActivation(t *testing.T) {
	db := newTestDB(t)
	f := buildAccessFixture(t, db, true)

	if err := activateLesson(db, f.l2.ID, f.student.ID); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	ac := f.context(t, db)

	if !ac.LessonOpen(&f.l2) {
		t.Error("activated lesson still closed")
	}
	if !ac.TestOpen(&f.lt2) {
		t.Error("lesson activation should open the lesson's tests")
	}
	if ac.TestOpen(&f.t2) {
		t.Error("lesson activation must not open section-wide tests")
	}
	if ac.SectionOpen {
		t.Error("lesson activation must not open the section")
	}
}

func TestAccessSectionActivationAndRevoke(t *testing.T) {
	db := newTestDB(t)
	f := buildAccessFixture(t, db, true)

	var section Section
	if err := db.Preload("Lessons").First(&section, f.section.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := activateSection(db, &section, f.student.ID); err != nil {
		t.Fatalf("activate section: %v", err)
	}
	ac := f.context(t, db)
	if !ac.SectionOpen || !ac.LessonOpen(&f.l2) || !ac.TestOpen(&f.t2) {
		t.Fatal("section activation should open everything inside")
	}

	if err := revokeSectionAccess(db, &section, f.student.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ac = f.context(t, db)
	if ac.SectionOpen {
		t.Error("section still open after revoke")
	}
	if ac.LessonOpen(&f.l2) {
		t.Error("cascaded lesson activation survived the revoke")
	}
}

func TestAccessSubjectActivation(t *testing.T) {
	db := newTestDB(t)
	f := buildAccessFixture(t, db, true)

	if err := activateSubject(db, f.subject.ID, f.student.ID); err != nil {
		t.Fatalf("activate subject: %v", err)
	}
	ac := f.context(t, db)
	if !ac.SubjectActive || !ac.SectionOpen {
		t.Fatal("subject activation should open its sections")
	}
	if !ac.LessonOpen(&f.l2) || !ac.TestOpen(&f.t2) {
		t.Error("subject activation should cascade into lessons and tests")
	}

	if err := revokeSubjectAccess(db, f.subject.ID, f.student.ID); err != nil {
		t.Fatalf("revoke subject: %v", err)
	}
	ac = f.context(t, db)
	if ac.SubjectActive || ac.SectionOpen || ac.LessonOpen(&f.l2) {
		t.Error("subject revoke should close the cascade")
	}
}

func TestLockSectionAccessForAll(t *testing.T) {
	db := newTestDB(t)
	f := buildAccessFixture(t, db, true)
	other := mustCreateStudent(t, db, "otherstudent")

	var section Section
	if err := db.Preload("Lessons").First(&section, f.section.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, sid := range []uint{f.student.ID, other.ID} {
		if err := activateSection(db, &section, sid); err != nil {
			t.Fatalf("activate: %v", err)
		}
	}
	if err := lockSectionAccessForAll(db, &section); err != nil {
		t.Fatalf("lock: %v", err)
	}

	var n int64
	if err := db.Model(&SectionActivation{}).
		Where("section_id = ? AND active = ?", section.ID, true).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("%d section activations survived the lock", n)
	}
	if err := db.Model(&LessonActivation{}).
		Where("active = ?", true).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("%d lesson activations survived the lock", n)
	}
}
