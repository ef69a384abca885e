package qglib

import (
	"errors"
	"fmt"
	"unsafe"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Closure", Label("closure"), func() {
	var e *engine
	var logs *logBuffer

	BeforeEach(func() {
		e, logs = createTestEngine()
	})

	Context("reference counting", func() {
		It("runs the finalize notifiers in order once the last reference is gone", func() {
			var order []int
			c := NewClosure(func(*Closure, *Value, []*Value, *InvocationHint) {}, "data")
			c.AddFinalizeNotifier(func() { order = append(order, 1) })
			c.AddFinalizeNotifier(func() { order = append(order, 2) })

			c.Ref()
			Expect(c.RefCount()).To(Equal(int32(2)))
			c.Unref()
			Expect(order).To(BeEmpty())
			Expect(c.Data()).To(Equal("data"))

			c.Unref()
			Expect(order).To(Equal([]int{1, 2}))
			Expect(c.IsValid()).To(BeFalse())
			Expect(c.Data()).To(BeNil())
		})

		It("does not call invalidated closures", func() {
			calls := 0
			c := NewClosure(func(*Closure, *Value, []*Value, *InvocationHint) { calls++ }, nil)
			c.Invoke(nil, nil, nil)
			c.Invalidate()
			c.Invoke(nil, nil, nil)
			Expect(calls).To(Equal(1))
		})

		It("holds a reference while the marshaller runs", func() {
			var during int32
			c := NewClosure(func(c *Closure, _ *Value, _ []*Value, _ *InvocationHint) {
				during = c.RefCount()
			}, nil)
			c.Invoke(nil, nil, nil)
			Expect(during).To(Equal(int32(2)))
			Expect(c.RefCount()).To(Equal(int32(1)))
		})
	})

	Context("Go func closures", func() {
		var sender *Value

		BeforeEach(func() {
			sender = e.NewValue(e.FundamentalType(KindPointer))
		})

		values := func(args ...any) []*Value {
			params := []*Value{sender}
			for _, arg := range args {
				v, err := e.ValueOf(arg)
				Expect(err).To(BeNil())
				params = append(params, v)
			}
			return params
		}

		It("unpacks the arguments and stores the result", func() {
			c, err := e.CreateClosure(func(a int32, b string) string {
				return fmt.Sprintf("%s%d", b, a)
			}, false)
			Expect(err).To(BeNil())

			result := e.NewValue(e.FundamentalType(KindString))
			c.Invoke(result, values(int32(4), "x"), nil)
			Expect(Get[string](result)).To(Equal("x4"))
		})

		It("converts arguments and results between compatible types", func() {
			c, err := e.CreateClosure(func(a float64) int64 {
				return int64(a * 2)
			}, false)
			Expect(err).To(BeNil())

			result := e.NewValue(e.FundamentalType(KindString))
			c.Invoke(result, values(int32(21)), nil)
			Expect(Get[string](result)).To(Equal("42"))
		})

		It("passes the sender when asked to", func() {
			marker := 1
			Expect(Set(sender, unsafe.Pointer(&marker))).To(Succeed())

			var got unsafe.Pointer
			var gotArg int32
			c, err := e.CreateClosure(func(s unsafe.Pointer, a int32) {
				got = s
				gotArg = a
			}, true)
			Expect(err).To(BeNil())

			c.Invoke(nil, values(int32(3)), nil)
			Expect(got).To(Equal(unsafe.Pointer(&marker)))
			Expect(gotArg).To(Equal(int32(3)))
		})

		It("ignores extra arguments", func() {
			calls := 0
			c, err := e.CreateClosure(func(a int32) {
				calls++
			}, false)
			Expect(err).To(BeNil())
			c.Invoke(nil, values(int32(1), "extra", true), nil)
			Expect(calls).To(Equal(1))
		})

		It("collects variadic arguments", func() {
			var got []string
			c, err := e.CreateClosure(func(first int32, rest ...string) {
				got = rest
			}, false)
			Expect(err).To(BeNil())
			c.Invoke(nil, values(int32(1), "a", "b"), nil)
			Expect(got).To(Equal([]string{"a", "b"}))
		})

		It("logs when there are too few arguments", func() {
			calls := 0
			c, err := e.CreateClosure(func(a int32, b int32) {
				calls++
			}, false)
			Expect(err).To(BeNil())
			c.Invoke(nil, values(int32(1)), nil)
			Expect(calls).To(Equal(0))
			Expect(logs.String()).To(ContainSubstring(ArityError{Want: 2, Have: 1}.Error()))
		})

		It("logs returned errors", func() {
			c, err := e.CreateClosure(func() (bool, error) {
				return false, errors.New("handler broke")
			}, false)
			Expect(err).To(BeNil())

			result := e.NewValue(e.FundamentalType(KindBool))
			c.Invoke(result, values(), nil)
			Expect(Get[bool](result)).To(BeFalse())
			Expect(logs.String()).To(ContainSubstring("handler broke"))
		})

		It("recovers from panics", func() {
			c, err := e.CreateClosure(func() {
				panic("handler exploded")
			}, false)
			Expect(err).To(BeNil())

			Expect(func() { c.Invoke(nil, values(), nil) }).ToNot(Panic())
			Expect(logs.String()).To(ContainSubstring("ERROR"))
			Expect(logs.String()).To(ContainSubstring("handler exploded"))
		})

		It("discards results nobody asked for", func() {
			c, err := e.CreateClosure(func() int32 {
				return 1
			}, false)
			Expect(err).To(BeNil())
			c.Invoke(nil, values(), nil)
			Expect(logs.String()).To(ContainSubstring("no return value is expected"))
		})

		It("refuses funcs it can not call", func() {
			_, err := e.CreateClosure("not a func", false)
			Expect(err).To(MatchError(ContainSubstring("slot must be a non-nil func")))

			_, err = e.CreateClosure(func() (int32, string) { return 0, "" }, false)
			Expect(err).To(MatchError(ContainSubstring("at most one value")))

			_, err = e.newFuncClosure((*Listener).OnNameChanged, &Person{}, false)
			Expect(err).To(MatchError(ContainSubstring("can not be called with a receiver")))
		})
	})

	It("describes the invocation", func() {
		var hint *InvocationHint
		Expect(hint.String()).To(Equal("closure"))
	})
})
