package qglib

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Object", Label("object"), func() {
	var e *engine
	var logs *logBuffer
	var personType Type

	BeforeEach(func() {
		e, logs = createTestEngine()

		var err error
		personType, err = e.RegisterObjectType("Person", Type{},
			NewParamSpec("name", e.FundamentalType(KindString), ParamReadWrite, "nobody"),
			NewParamSpec("age", e.FundamentalType(KindInt), ParamReadWrite, int32(18)),
			NewParamSpec("id", e.FundamentalType(KindString), ParamReadable|ParamConstructOnly, nil),
			NewParamSpec("secret", e.FundamentalType(KindString), ParamWritable, nil),
			NewParamSpec("friend", e.FundamentalType(KindObject), ParamReadWrite, nil),
		)
		Expect(err).To(BeNil())
	})

	It("starts with the default property values", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		Expect(GetProperty[string](obj, "name")).To(Equal("nobody"))
		Expect(GetProperty[int32](obj, "age")).To(Equal(int32(18)))
		Expect(GetProperty[string](obj, "id")).To(Equal(""))
	})

	It("takes construct properties", func() {
		obj, err := e.NewObject(personType, map[string]any{
			"name": "alice",
			"id":   "p-1",
		})
		Expect(err).To(BeNil())
		Expect(GetProperty[string](obj, "name")).To(Equal("alice"))
		Expect(GetProperty[string](obj, "id")).To(Equal("p-1"))

		err = obj.SetProperty("id", "p-2")
		Expect(err).To(MatchError(ContainSubstring("it is not writable")))
	})

	It("refuses unknown and broken construct properties", func() {
		_, err := e.NewObject(personType, map[string]any{"height": 180})
		Expect(err).To(MatchError(ContainSubstring("it has no property height")))

		_, err = e.NewObject(personType, map[string]any{"age": "old"})
		Expect(err).To(MatchError(ContainSubstring("could not set property age")))

		_, err = e.NewObject(e.FundamentalType(KindInt), nil)
		Expect(err).To(MatchError(ContainSubstring("not an instantiable object type")))
	})

	It("converts property values", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		Expect(obj.SetProperty("age", 42)).To(Succeed())
		Expect(GetProperty[int32](obj, "age")).To(Equal(int32(42)))
		Expect(GetProperty[string](obj, "age")).To(Equal("42"))

		Expect(obj.SetProperty("age", "43")).To(Succeed())
		Expect(GetProperty[int64](obj, "age")).To(Equal(int64(43)))
	})

	It("hands out copies of property values", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		v, err := obj.Property("name")
		Expect(err).To(BeNil())
		Expect(Set(v, "changed")).To(Succeed())
		Expect(GetProperty[string](obj, "name")).To(Equal("nobody"))
	})

	It("respects the readable and writable flags", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		Expect(obj.SetProperty("secret", "hush")).To(Succeed())
		_, err = obj.Property("secret")
		Expect(err).To(MatchError(ContainSubstring("it is not readable")))

		err = obj.SetProperty("height", 180)
		Expect(err).To(MatchError(ContainSubstring("has no such property")))
	})

	It("holds references on object properties", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())
		friend, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		Expect(obj.SetProperty("friend", friend)).To(Succeed())
		Expect(friend.RefCount()).To(Equal(int32(2)))
		Expect(GetProperty[*Object](obj, "friend")).To(BeIdenticalTo(friend))
		Expect(friend.RefCount()).To(Equal(int32(2)))

		obj.Unref()
		Expect(friend.RefCount()).To(Equal(int32(1)))
		Expect(friend.IsDisposed()).To(BeFalse())
	})

	It("runs the destroy notifies when disposed", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		var order []int
		obj.AddDestroyNotify(func() { order = append(order, 1) })
		id := obj.AddDestroyNotify(func() { order = append(order, 2) })
		obj.AddDestroyNotify(func() { order = append(order, 3) })
		obj.RemoveDestroyNotify(id)

		obj.Ref()
		obj.Unref()
		Expect(order).To(BeEmpty())

		obj.Unref()
		Expect(obj.IsDisposed()).To(BeTrue())
		Expect(order).To(Equal([]int{1, 3}))

		Expect(obj.AddDestroyNotify(func() { order = append(order, 4) })).To(BeZero())
		Expect(order).To(Equal([]int{1, 3, 4}))
	})

	It("refuses property access after disposal", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())
		obj.Unref()

		Expect(obj.SetProperty("name", "ghost")).To(MatchError(ContainSubstring("is disposed")))
		_, err = obj.Property("name")
		Expect(err).To(MatchError(ContainSubstring("is disposed")))

		obj.Unref()
		Expect(logs.String()).To(ContainSubstring("which has no references left"))
	})

	It("has a unique identity", func() {
		a, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())
		b, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		Expect(a.ID()).ToNot(Equal(b.ID()))
		Expect(a.String()).To(Equal("Person(" + a.ID().String() + ")"))
		Expect(a.Engine()).To(BeIdenticalTo(e))
		Expect(a.ListProperties()).To(HaveLen(5))
	})

	It("stores wrappers until it is disposed", func() {
		obj, err := e.NewObject(personType, nil)
		Expect(err).To(BeNil())

		person := &Person{Object: obj}
		obj.SetWrapper(person)
		Expect(obj.Wrapper()).To(BeIdenticalTo(person))

		obj.Unref()
		Expect(obj.Wrapper()).To(BeNil())
	})
})
