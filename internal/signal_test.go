package qglib

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Signals", Label("signal"), func() {
	var e *engine
	var animal, dog Type

	BeforeEach(func() {
		e, _ = createTestEngine()

		var err error
		animal, err = e.RegisterObjectType("Animal", Type{})
		Expect(err).To(BeNil())
		dog, err = e.RegisterObjectType("Dog", animal)
		Expect(err).To(BeNil())
	})

	It("registers notify on GObject", func() {
		sig, detail, ok := e.LookupSignal("notify", dog)
		Expect(ok).To(BeTrue())
		Expect(detail).To(BeEmpty())

		query := sig.Query()
		Expect(query.Owner).To(Equal(e.FundamentalType(KindObject)))
		Expect(query.Flags & SignalDetailed).ToNot(BeZero())
		Expect(query.Flags & SignalNoRecurse).ToNot(BeZero())
		Expect(query.ReturnType.IsValid()).To(BeFalse())
		Expect(query.ParamTypes).To(Equal([]Type{e.FundamentalType(KindParam)}))
		Expect(sig.String()).To(Equal("GObject::notify"))
	})

	It("registers signals with canonical names", func() {
		sig, err := e.RegisterSignal(animal, "food_eaten", 0, Type{}, e.FundamentalType(KindString))
		Expect(err).To(BeNil())
		Expect(sig.Name()).To(Equal("food-eaten"))
		Expect(sig.Query().Flags).To(Equal(SignalRunLast))

		found, _, ok := e.LookupSignal("food_eaten", dog)
		Expect(ok).To(BeTrue())
		Expect(found).To(Equal(sig))
		Expect(found.ID()).To(Equal(sig.ID()))
	})

	It("refuses names that are taken in the ancestry", func() {
		_, err := e.RegisterSignal(animal, "bark", SignalRunFirst, Type{})
		Expect(err).To(BeNil())

		_, err = e.RegisterSignal(dog, "bark", SignalRunFirst, Type{})
		Expect(err).To(MatchError(ContainSubstring("already registered on Animal")))

		_, err = e.RegisterSignal(dog, "notify", SignalRunFirst, Type{})
		Expect(err).To(MatchError(ContainSubstring("already registered on GObject")))
	})

	It("refuses broken registrations", func() {
		_, err := e.RegisterSignal(animal, "9lives", 0, Type{})
		Expect(err).To(MatchError(ContainSubstring("invalid signal name")))

		_, err = e.RegisterSignal(e.FundamentalType(KindInt), "changed", 0, Type{})
		Expect(err).To(MatchError(ContainSubstring("is not an object type")))

		_, err = e.RegisterSignal(animal, "changed", 0, e.FundamentalType(KindEnum))
		Expect(err).To(MatchError(ContainSubstring("return type GEnum")))

		_, err = e.RegisterSignal(animal, "changed", 0, Type{}, Type{})
		Expect(err).To(MatchError(ContainSubstring("parameter 0")))
	})

	It("only accepts details on detailed signals", func() {
		_, err := e.RegisterSignal(animal, "plain", 0, Type{})
		Expect(err).To(BeNil())

		_, _, ok := e.LookupSignal("plain::detail", animal)
		Expect(ok).To(BeFalse())

		_, detail, ok := e.LookupSignal("notify::name", animal)
		Expect(ok).To(BeTrue())
		Expect(detail).To(Equal("name"))

		_, _, ok = e.LookupSignal("notify::", animal)
		Expect(ok).To(BeFalse())
	})

	It("does not find signals of derived types on the parent", func() {
		_, err := e.RegisterSignal(dog, "fetch", 0, Type{})
		Expect(err).To(BeNil())

		_, _, ok := e.LookupSignal("fetch", animal)
		Expect(ok).To(BeFalse())
		_, _, ok = e.LookupSignal("fetch", Type{})
		Expect(ok).To(BeFalse())
	})

	It("lists the signals declared on a type", func() {
		_, err := e.RegisterSignal(animal, "eat", 0, Type{})
		Expect(err).To(BeNil())
		_, err = e.RegisterSignal(animal, "sleep", 0, Type{})
		Expect(err).To(BeNil())

		var names []string
		for _, sig := range e.ListSignals(animal) {
			names = append(names, sig.Name())
		}
		Expect(names).To(Equal([]string{"eat", "sleep"}))
		Expect(e.ListSignals(dog)).To(BeEmpty())
	})

	It("formats and parses flags", func() {
		flags := SignalRunLast | SignalDetailed
		Expect(flags.String()).To(Equal("run-last|detailed"))

		parsed, err := ParseSignalFlags("run-last", "detailed")
		Expect(err).To(BeNil())
		Expect(parsed).To(Equal(flags))

		_, err = ParseSignalFlags("run-sometimes")
		Expect(err).To(MatchError(ContainSubstring("unknown signal flag")))
	})

	It("describes invalid signals", func() {
		var sig Signal
		Expect(sig.IsValid()).To(BeFalse())
		Expect(sig.String()).To(Equal("<invalid>"))
		Expect(sig.Query()).To(Equal(SignalQuery{}))
	})
})
